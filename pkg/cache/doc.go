// Package cache provides the response cache in front of the NASA APIs and
// the shared Redis client.
//
// The memory tier is an expirable LRU from hashicorp/golang-lru. When Redis
// is configured it acts as a second tier shared by every instance, so a
// response fetched by one replica is served from cache by the others.
package cache
