package pathkey

import "testing"

func TestKeyNormalizesSeparatorsAndCase(t *testing.T) {
	got := Key(`Music\Bowie\Héroes.mp3`)
	want := "music/bowie/héroes.mp3"
	if got != want {
		t.Fatalf("Key = %q, want %q", got, want)
	}
}

func TestKeyIsIdempotent(t *testing.T) {
	path := "/Music/Bowie/Heroes.mp3"
	if got := Key(Key(path)); got != Key(path) {
		t.Fatalf("Key(Key(p)) = %q, want %q", got, Key(path))
	}
}

func TestEqualIgnoresCaseAndSeparator(t *testing.T) {
	if !Equal(`C:\Music\Song.MP3`, "c:/music/song.mp3") {
		t.Fatal("expected paths to be equal under case folding")
	}
}
