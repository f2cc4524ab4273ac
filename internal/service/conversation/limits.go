package conversation

// DefaultHistoryLimit bounds history reads when the caller does not pass
// a limit. There is no internal maximum: bulk reads are bounded by the
// caller's limit parameter, not a server cap.
const DefaultHistoryLimit = 50
