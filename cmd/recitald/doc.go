// Command recitald runs the recital backend daemon and offers
// administrative subcommands for sessions, content, and configuration.
package main
