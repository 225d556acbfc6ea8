// Package viz shows the controller from the outside: a terminal monitor
// that polls the published state and PNG plots of recorded runs.
//
// # Monitor keys
//
//	Space - Pause/resume polling history
//	C     - Clear theta history and end-effector trace
//	T     - Cycle color themes
//	?     - Show help overlay
//	Q     - Quit
package viz
