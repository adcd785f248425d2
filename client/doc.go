// Package client is the caller side of the session lifecycle.
//
// A [Session] holds the current token pair and user as one value. The
// application creates it explicitly, with a [TokenStore] for persistence,
// and hands it to a [Client]; there is no package-level session.
//
// State machine:
//
//	Anonymous     --Login/Register-->     Authenticated
//	Authenticated --401 on a call-->      Refreshing
//	Refreshing    --refresh ok-->         Authenticated (original call retried once)
//	Refreshing    --refresh failed-->     Anonymous (tokens cleared, LoginNavigator invoked)
//	Authenticated --Logout-->             Anonymous (cleared even if the server call fails)
//
// Concurrent calls that fail with 401 share a single refresh request. A
// call whose token was already replaced by the time it failed skips the
// refresh and just retries with the new token.
package client
