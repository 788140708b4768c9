// Package crawler defines the article and download types shared by the
// queue, worker, dispatcher, and source packages, along with the interfaces
// those packages use to talk to each other.
package crawler
