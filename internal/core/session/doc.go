// Package session implements the client session lifecycle.
//
// A Manager moves between four states:
//
//	Anonymous --Login--> Authenticating --ok--> Authenticated
//	                                    --err-> AuthFailed
//	Authenticated --Logout / expiry--> Anonymous
//	Anonymous --Restore--> Authenticated | Anonymous
//
// Each login attempt carries an ID; a response is applied only while the
// manager is still authenticating that attempt, so a Logout issued while a
// request is in flight can never be undone by its late reply.
//
// While Authenticated exactly one expiry timer is armed. Any transition out
// of Authenticated disarms it before the stored session is cleared.
package session
