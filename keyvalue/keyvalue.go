package keyvalue

// T is a key/value pair used to carry structured context into diagnostics.
type T struct {
	Key   string
	Value string
}

// KV creates a T from a key and a value.
func KV(k, v string) T {
	return T{Key: k, Value: v}
}
