// Package shoutcast reads now-playing metadata from ICY/Shoutcast streams.
//
// It started as a fork of github.com/romantomjak/shoutcast and is reduced to
// what a metadata poller needs:
//   - Playlist resolution: .pls and .m3u URLs are resolved to the actual stream URL
//   - One metadata block per connection: the first metaint audio bytes are
//     discarded and the following block is returned raw for the caller to decode
//   - Station headers (icy-name, icy-description, icy-genre) are exposed for
//     streams that never send in-band metadata
//   - HEAD probes for stream health
package shoutcast
