/*
The storage package provides a transactional key/value interface for storing
OpsGenie accounts and rule options.

Objects are serialized and stored whole, so updating a single field rewrites the
object. Modifications are rare and objects are small, which makes this acceptable.

A BoltDB backed implementation is provided along with an in memory store for tests.
*/
package storage
