package accounts

import (
	"bytes"
	"testing"
)

func TestParseListing(t *testing.T) {
	out := bytes.NewBufferString(`drwxr-xr-x          4,096 2026/01/02 03:04:05 .
drwxr-xr-x          4,096 2026/01/02 03:04:05 alice
drwxrwxr-x          4,096 2026/02/10 11:22:33 Bob Smith
-rw-r--r--          1,024 2026/01/02 03:04:05 notes.txt
drwx------          4,096 2026/03/01 08:00:00 .hidden
lrwxrwxrwx             11 2026/01/02 03:04:05 shortcut
`)
	names := parseListing(out)
	want := []string{"alice", "Bob Smith"}
	if len(names) != len(want) {
		t.Fatalf("parseListing = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("parseListing[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
