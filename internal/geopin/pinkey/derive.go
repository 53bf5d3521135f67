package pinkey

// Occupied reports whether a candidate key is already taken in the store.
type Occupied func(k Key) bool

/*
 * Derive packs the fields into a key and walks forward (+1 on the whole
 * 256 bit value) until a free key is found. Candidates that land on the
 * locked sentinel are skipped. probes is the number of collisions resolved.
 */
func Derive(f Fields, occupied Occupied) (k Key, probes int, err error) {
	if f.Timestamp == Sentinel {
		return k, 0, ErrSentinelTimestamp
	}
	k = Pack(f)
	for k.Locked() || occupied(k) {
		next, ok := k.Next()
		if !ok {
			return Key{}, probes, ErrKeySpaceExhausted
		}
		k = next
		probes++
	}
	return k, probes, nil
}

// DeriveLocked re-keys k under the sentinel timestamp. On collision the
// latitude/longitude/altitude prefix is incremented so the result always
// parses to the sentinel.
func DeriveLocked(k Key, occupied Occupied) (locked Key, probes int, err error) {
	locked = k.WithTimestamp(Sentinel)
	for occupied(locked) {
		next, ok := locked.NextPrefix()
		if !ok {
			return Key{}, probes, ErrKeySpaceExhausted
		}
		locked = next
		probes++
	}
	return locked, probes, nil
}
