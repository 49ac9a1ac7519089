package retrieval

import "testing"

func TestCanRunSemanticSearch(t *testing.T) {
	base := Eligibility{
		ProjectLoaded: true,
		ProjectRoot:   "/home/dev/proj",
		WorkDir:       "/home/dev/proj/internal",
	}

	tests := []struct {
		name string
		mod  func(e *Eligibility)
		want bool
	}{
		{"workdir under root", func(e *Eligibility) {}, true},
		{"workdir is root", func(e *Eligibility) { e.WorkDir = "/home/dev/proj" }, true},
		{"no project loaded", func(e *Eligibility) { e.ProjectLoaded = false }, false},
		{"workdir outside root", func(e *Eligibility) { e.WorkDir = "/tmp/elsewhere" }, false},
		{"outside root but has projects", func(e *Eligibility) {
			e.WorkDir = "/tmp/elsewhere"
			e.WorkDirHasProjects = true
		}, true},
		{"prefix is not a subdir", func(e *Eligibility) { e.WorkDir = "/home/dev/projother" }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := base
			tc.mod(&e)
			if got := CanRunSemanticSearch(e, &Locks{}); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanRunSemanticSearch_LocksGate(t *testing.T) {
	e := Eligibility{ProjectLoaded: true, ProjectRoot: "/p", WorkDir: "/p/sub"}
	locks := &Locks{}

	if !CanRunSemanticSearch(e, locks) {
		t.Fatal("expected eligible with both locks free")
	}

	locks.SetEmbedding(true)
	if CanRunSemanticSearch(e, locks) {
		t.Error("eligible while embedding lock held")
	}
	locks.SetEmbedding(false)

	locks.SetIngestion(true)
	if CanRunSemanticSearch(e, locks) {
		t.Error("eligible while ingestion lock held")
	}
	locks.SetIngestion(false)

	if !CanRunSemanticSearch(e, locks) {
		t.Error("releasing locks should restore eligibility")
	}
}
