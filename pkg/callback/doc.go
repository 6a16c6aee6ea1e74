// Package callback runs the short-lived loopback HTTP server that receives
// the authorization response after the user signs in through the browser.
//
// A Listener binds a loopback address, answers GET (query) and POST
// (form_post) requests on a single path and records the first response it
// sees in a write-once Future. It is meant to live for exactly one login:
//
//	l, err := callback.Start(ctx, callback.Config{Address: "127.0.0.1:8400"})
//	if err != nil {
//	    return err
//	}
//	defer l.Shutdown(context.Background())
//
//	res, err := l.Result().Wait(ctx)
//
// Shutdown returns only after the port has been released, so a following
// login may bind the same address immediately.
package callback
