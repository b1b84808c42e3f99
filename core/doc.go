// Package core defines the shared domain types of the shop agent: the
// append-only conversation turn log, the tool invocation audit record, the
// ConversationStore contract and the sentinel error taxonomy.
//
// core deliberately has no dependencies on provider SDKs or storage drivers;
// every other package in the module builds on these types.
package core
