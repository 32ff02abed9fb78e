package domain

// KeyPrefix namespaces every key courserank writes to the key-value store.
const KeyPrefix = "courserank:"
