// Package selfupdate replaces the qpm installation directory with a newer
// release.
//
// The running process cannot overwrite itself, so the work is split in two:
//   - selfupdate.go: fetch the remote self-manifest, compare versions, download,
//     verify and unpack the release, then launch the bootstrap
//   - bootstrap.go: the detached helper (the same binary run through a hidden
//     subcommand) that waits for the parent to signal readiness and exit, backs
//     up the installation and copies the new release into place
//   - launch_*.go: detached process spawning per platform
package selfupdate
