// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the counsellor command line.
//
// Commands are built with cobra. Every command loads the config, opens a
// log file and builds the collaborators it needs: the backend client, the
// SQLite conversation store and the health prober.
//
// # Commands
//
//	counsellor                     open the chat (same as "chat")
//	counsellor chat [--plain]      full-screen chat, or line-based with --plain
//	counsellor ask <message>       one question, reply printed to stdout
//	counsellor history list        saved conversations grouped by day
//	counsellor history show <c>    print a conversation
//	counsellor history rename <c> <title>
//	counsellor history delete <c>
//	counsellor history export <c> [--format md|json|yaml] [-o dir]
//	counsellor health [--wait]     check whether the service is up
//	counsellor config show|get|set|init|path|keys
//
// A conversation reference <c> is a number from "history list", an id or
// a unique id prefix.
//
// # Exit Codes
//
// See the Exit* constants: 2 for usage errors, 3 for config errors, 4 when
// not signed in, 5 when the service is waking up, 7 when a conversation is
// not found and 8 on timeouts.
package cli
