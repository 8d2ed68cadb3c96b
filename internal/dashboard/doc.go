// Package dashboard keeps the market table, trending list and global market
// stats fresh by running one poller per surface against the REST API.
package dashboard
