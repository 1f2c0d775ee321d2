package inspector

// Property keys the engine reads and/or writes. All engine-owned keys live
// in the pwrt:inspector: namespace; other properties on an entity root are
// opaque and left untouched.
const (
	KeyValueDeps              = "pwrt:inspector:value-deps"
	KeyValueDepsHashes        = "pwrt:inspector:value-deps-hashes"
	KeyValueRef               = "pwrt:inspector:value-ref"
	KeyValueRegexp            = "pwrt:inspector:value-regexp"
	KeyValue                  = "pwrt:inspector:value"
	KeyValueNew               = "pwrt:inspector:value-new"
	KeyValueRequiresReviewing = "pwrt:inspector:value-requires-reviewing"
)

// sentinelNone stands in for "no content" or "no known value" wherever the
// engine needs a comparable placeholder instead of an absent value.
const sentinelNone = "~none~"
