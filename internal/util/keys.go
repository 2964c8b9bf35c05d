package util

// ItemsKey is the hash holding every record of one kind.
func ItemsKey(prefix, namespace string) string {
	return prefix + ":" + namespace
}

// InitedKey marks a store that holds a complete data set.
func InitedKey(prefix string) string {
	return prefix + ":$inited"
}

func BigSegmentIncludeKey(prefix, userHash string) string {
	return prefix + ":big_segment_include:" + userHash
}

func BigSegmentExcludeKey(prefix, userHash string) string {
	return prefix + ":big_segment_exclude:" + userHash
}

func BigSegmentsSyncTimeKey(prefix string) string {
	return prefix + ":big_segments_synchronized_on"
}
