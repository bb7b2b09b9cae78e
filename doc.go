// Package surrealdb is a client for SurrealDB.
//
// # Connection Engines
//
// There are 2 different connection engines, WebSocket and HTTP, you can use to connect to SurrealDB backend.
//
// Provide a proper SurrealDB endpoint URL to [Connect] or [Open] so that it chooses the right engine for you:
// ws:// and wss:// endpoints keep one stateful WebSocket session and speak CBOR, http:// and https://
// endpoints send one JSON request per call and replay the session (namespace, database, token and
// variables) with every request. Both engines behave the same from the point of view of a [DB].
//
// # Results
//
// [DB.Query] returns a [Response] holding one [Outcome] per statement, in the order the statements were
// sent. A statement that fails on the server yields an outcome whose [Outcome.Err] is a [*StatementError];
// the other statements are unaffected. A query the server refuses as a whole, for example because it
// does not parse, fails the call itself with a [*connection.RPCError].
//
// Values are received as [models.Value] and decoded into Go types with [models.Decode], [DecodeFirst]
// or [DecodeAll]. Decoding never changes a value: a float that is not an exact integer does not decode
// into an int, and a record id only decodes into a [models.RecordID].
//
// # Errors
//
// Transport failures are [*ConnectionError] values, rejected credentials are [*AuthError] values and
// replies of an unexpected shape are [*ProtocolError] values. Each matches its sentinel with
// [errors.Is]: [ErrConnection], [ErrAuth] and [ErrProtocol]. Nothing is retried.
package surrealdb
