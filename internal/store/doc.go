// Package store owns the single MongoDB connection of the service and the model
// registry handed to request handlers. The registry contract (Models, UserModel)
// is satisfied both by the MongoDB-backed models and by MemoryUserModel, so the
// router can run against either without code changes.
package store
