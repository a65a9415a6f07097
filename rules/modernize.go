//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// SeqIteration detects ranging over a freshly split slice.
//
// The old pattern:
//
//	for _, kw := range strings.Split(value, ",") {
//
// New pattern (Go 1.24+):
//
//	for kw := range strings.SplitSeq(value, ",") {
func SeqIteration(m dsl.Matcher) {
	m.Match(`for $_, $line := range strings.Split($s, "\n") { $*body }`).
		Report(`use for $line := range strings.Lines($s); it also handles \r\n`)

	m.Match(`for $_, $part := range strings.Split($s, $sep) { $*body }`).
		Where(!m["sep"].Text.Matches(`^"\\r?\\n"$`)).
		Report("use for $part := range strings.SplitSeq($s, $sep) to skip the intermediate slice")

	m.Match(`for $_, $part := range bytes.Split($s, $sep) { $*body }`).
		Report("use for $part := range bytes.SplitSeq($s, $sep) to skip the intermediate slice")

	m.Match(`for $_, $field := range strings.Fields($s) { $*body }`).
		Report("use for $field := range strings.FieldsSeq($s)")

	m.Match(`for $_, $field := range strings.FieldsFunc($s, $f) { $*body }`).
		Report("use for $field := range strings.FieldsFuncSeq($s, $f)")
}

// SlicesClone detects hand-written slice copies. Keyword lists and detection
// snapshots are handed out as copies.
func SlicesClone(m dsl.Matcher) {
	m.Match(`append([]$typ(nil), $s...)`, `append([]$typ{}, $s...)`, `append($s[:0:0], $s...)`).
		Report("use slices.Clone($s)")

	m.Match(`$dst := make([]byte, len($src)); copy($dst, $src)`).
		Report("use $dst := bytes.Clone($src)").
		Suggest("$dst := bytes.Clone($src)")
}

// MapKeysCollection detects manual collection of map keys.
func MapKeysCollection(m dsl.Matcher) {
	m.Match(`for $k := range $m { $keys = append($keys, $k) }`, `for $k, _ := range $m { $keys = append($keys, $k) }`).
		Report("use slices.Collect(maps.Keys($m)), or slices.Sorted when the order matters")

	m.Match(`for _, $v := range $m { $vals = append($vals, $v) }`).
		Where(m["m"].Type.Underlying().Is(`map[$_]$_`)).
		Report("use slices.Collect(maps.Values($m))")
}

// TimeLayoutConstants detects literal reference layouts that have names.
func TimeLayoutConstants(m dsl.Matcher) {
	m.Match(`$t.Format("2006-01-02 15:04:05")`).
		Report("use $t.Format(time.DateTime)").
		Suggest("$t.Format(time.DateTime)")

	m.Match(`$t.Format("2006-01-02")`).
		Report("use $t.Format(time.DateOnly)").
		Suggest("$t.Format(time.DateOnly)")

	m.Match(`$t.Format("15:04:05")`).
		Report("use $t.Format(time.TimeOnly)").
		Suggest("$t.Format(time.TimeOnly)")

	m.Match(`time.Parse("2006-01-02 15:04:05", $s)`).
		Report("use time.Parse(time.DateTime, $s)").
		Suggest("time.Parse(time.DateTime, $s)")
}

// TimerChannelLen detects len or cap on timer channels, which are
// unbuffered since Go 1.23 and always report 0.
func TimerChannelLen(m dsl.Matcher) {
	m.Match(`len($x.C)`, `cap($x.C)`).
		Where(m["x"].Type.Is("*time.Timer") || m["x"].Type.Is("*time.Ticker")).
		Report("timer channels are unbuffered; use a select with a default case")
}

// DeferredTimeSince detects durations evaluated when the defer statement
// runs instead of when the function returns.
//
// Broken:
//
//	defer metrics.ObserveInit(time.Since(start))
//
// Correct:
//
//	defer func() { metrics.ObserveInit(time.Since(start)) }()
func DeferredTimeSince(m dsl.Matcher) {
	m.Match(`defer $fn(time.Since($start))`, `defer $fn($*_, time.Since($start), $*_)`).
		Report("time.Since($start) is evaluated at the defer statement; wrap the call in func()")

	m.Match(`defer $fn(time.Now())`, `defer $fn($*_, time.Now(), $*_)`).
		Report("time.Now() is evaluated at the defer statement; wrap the call in func()")
}

// BenchmarkLoop detects b.N loops.
//
// New pattern (Go 1.24+):
//
//	for b.Loop() {
//	    _, _ = engine.Process(frame)
//	}
func BenchmarkLoop(m dsl.Matcher) {
	m.Match(`for $i := 0; $i < $b.N; $i++ { $*body }`, `for $i := range $b.N { $*body }`).
		Where(m["b"].Type.Is("*testing.B")).
		Report("use for $b.Loop() { ... }; declare $i separately if the body needs it")

	m.Match(`for range $b.N { $*body }`).
		Where(m["b"].Type.Is("*testing.B")).
		Report("use for $b.Loop() { ... }").
		Suggest("for $b.Loop() { $body }")
}

// MinMaxBuiltin detects integer min/max computed through float64.
func MinMaxBuiltin(m dsl.Matcher) {
	m.Match(`int(math.Min(float64($a), float64($b)))`, `int64(math.Min(float64($a), float64($b)))`).
		Report("use min($a, $b)").
		Suggest("min($a, $b)")

	m.Match(`int(math.Max(float64($a), float64($b)))`, `int64(math.Max(float64($a), float64($b)))`).
		Report("use max($a, $b)").
		Suggest("max($a, $b)")
}

// ClearBuiltin detects maps emptied key by key.
func ClearBuiltin(m dsl.Matcher) {
	m.Match(`for $k := range $m { delete($m, $k) }`, `for $k, _ := range $m { delete($m, $k) }`).
		Report("use clear($m)").
		Suggest("clear($m)")
}

// RangeOverInteger detects counted loops that can range over an int.
// Strided loops such as the byte walk in CalculateAudioLevel do not match.
func RangeOverInteger(m dsl.Matcher) {
	m.Match(`for $i := 0; $i < $n; $i++ { $*body }`).
		Where(!m["n"].Text.Matches(`\.N$`)).
		Report("use for $i := range $n").
		Suggest("for $i := range $n { $body }")
}

// JoinHostPort detects broker and listen addresses built with Sprintf,
// which break on IPv6 literals.
func JoinHostPort(m dsl.Matcher) {
	m.Match(`fmt.Sprintf("%s:%d", $host, $port)`, `fmt.Sprintf("%v:%d", $host, $port)`).
		Report("use net.JoinHostPort($host, strconv.Itoa($port))")
}

// ErrorBeforeUse detects a file used before its open error is checked.
func ErrorBeforeUse(m dsl.Matcher) {
	m.Match(
		`$f, $err := os.Open($path); $_ := $f.$method($*_); if $err != nil { $*_ }`,
		`$f, $err := os.Create($path); $_ := $f.$method($*_); if $err != nil { $*_ }`,
	).
		Report("$f may be nil; check $err before calling $f.$method")
}
