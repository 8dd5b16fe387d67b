// Package tui provides the terminal wizard for authoring a CPR document.
//
// The wizard walks one session through its pathway: it opens the first
// unlocked section, lets the author edit a draft, validates it on request,
// and locks it once a passing verdict is shown. When every section is
// locked the session can be committed.
//
// Keys:
//
//	ctrl+s  validate the draft
//	ctrl+l  lock the section (after a passing verdict for this exact draft)
//	ctrl+k  commit (once every section is locked)
//	esc     save the draft and quit
//
// Results are entered one per line. A completion date may follow " @ ":
//
//	Launched the beta to 200 users @ 2026-06-01
//
// Usage:
//
//	program, err := tui.NewProgram(svc, sessionID)
//	if err != nil {
//	    return err
//	}
//	_, err = program.Run()
//
// The wizard keeps no state of its own: every step reloads the session
// from the service, so a wizard and the HTTP API can work on the same
// session.
package tui
