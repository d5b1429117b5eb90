// Package process spawns and terminates the direct child of a managed process
// run.
//
// On Unix the child is placed in its own process group and the graceful
// terminate and forced kill signals are delivered to that group, so a shell
// wrapper and the program it started are signalled together. On Windows only
// the direct child is signalled: Terminate sends an interrupt on a best-effort
// basis and Kill terminates the top-level process. Grandchildren that detach
// from the group are not tracked on any platform.
package process
