// Package unipile delivers WhatsApp messages through the Unipile REST API.
//
// Messages to a phone number open (or reuse) a one-to-one chat; messages to a
// contact name resolve the name against the account's individual chats first.
package unipile
