package utils

import (
	"reflect"
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Not what we HOPED, v2!")
	want := []string{"not", "what", "we", "hoped", "v2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize=%v, want %v", got, want)
	}
	if len(Tokenize("  ...  ")) != 0 {
		t.Error("punctuation only yields no tokens")
	}
}
