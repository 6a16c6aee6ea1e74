// Package login runs a complete interactive sign-in: provider discovery,
// the browser authorization round trip, the code-for-token exchange and,
// when enabled, ID token verification.
//
//	settings, _ := config.Load(config.LoadOptions{})
//	flow, err := login.New(settings, login.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	result, err := flow.Login(ctx)
//	var stageErr *login.StageError
//	if errors.As(err, &stageErr) {
//		log.Printf("failed during %s", stageErr.Stage)
//	}
//
// Each stage can be replaced with an option, which is how tests drive the
// flow without a real provider or browser.
package login
