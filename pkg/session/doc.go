/*
Package session implements session management and persistence orchestration.

It serializes access to a session across goroutines and, with a distributed
locker, across server replicas, so that two steps of the same session never run
concurrently against the same snapshot.
*/
package session
