package domain

// KeyPrefix namespaces every key this service writes to the key-value store.
const KeyPrefix = "recall:"

// NoAnswerSentinel is what the model is told to emit when the context is insufficient.
const NoAnswerSentinel = "<NO_ANSWER>"
