package classifier

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/eventwatch/internal/nlp"
)

// fakeAnalyzer returns hand-tagged analyses keyed by the trimmed text.
// Tokens are written "Text/TAG" or "Text/TAG/ENTITY".
type fakeAnalyzer struct {
	docs map[string]string
}

func (f fakeAnalyzer) Analyze(text string) *nlp.Document {
	spec := f.docs[strings.TrimSpace(text)]
	var words []nlp.Word
	for _, field := range strings.Fields(spec) {
		parts := strings.Split(field, "/")
		w := nlp.Word{Text: parts[0], Tag: parts[1], Entity: "O"}
		if len(parts) > 2 {
			w.Entity = parts[2]
		}
		words = append(words, w)
	}
	return nlp.Build(text, words, nlp.Lemmatize)
}

func (fakeAnalyzer) Lemma(word string) string {
	return nlp.Lemmatize(word)
}

var fixtures = map[string]string{
	"Cate Blanchett hosts a gala": "Cate/NNP/B-PERSON Blanchett/NNP/I-PERSON hosts/VBZ a/DT gala/NN",
	"Cate Blanchett said the festival was wonderful": "Cate/NNP/B-PERSON Blanchett/NNP/I-PERSON said/VBD " +
		"the/DT festival/NN was/VBD wonderful/JJ",
	"Director interviewed by Cate Blanchett": "Director/NN interviewed/VBN by/IN " +
		"Cate/NNP/B-PERSON Blanchett/NNP/I-PERSON",
	"Cate Blanchett was interviewed by Tilda Swinton": "Cate/NNP/B-PERSON Blanchett/NNP/I-PERSON was/VBD " +
		"interviewed/VBN by/IN Tilda/NNP/B-PERSON Swinton/NNP/I-PERSON",
	"Featuring Cate Blanchett A new film screening": "Featuring/VBG Cate/NNP/B-PERSON Blanchett/NNP/I-PERSON " +
		"A/DT new/JJ film/NN screening/NN",
	"CATE BLANCHETT hosts gala":            "CATE/NNP BLANCHETT/NNP hosts/VBZ gala/NN",
	"Blanchett presents her new film":      "Blanchett/NNP/B-PERSON presents/VBZ her/PRP$ new/JJ film/NN",
	"Blanchett presents":                   "Blanchett/NNP presents/VBZ",
	"Blanchett fans gather as Cate Blanchett appears": "Blanchett/NNP/B-PERSON fans/NNS gather/VBP as/IN " +
		"Cate/NNP/B-PERSON Blanchett/NNP/I-PERSON appears/VBZ",
	"Gala dinner Cate Blanchett will join guests": "Gala/NNP dinner/NN Cate/NNP Blanchett/NNP will/MD " +
		"join/VB guests/NNS",
}

func newFake(policy ProximityPolicy) *Classifier {
	return New(fakeAnalyzer{docs: fixtures}, Options{FirstName: "Cate", Surname: "Blanchett", Policy: policy})
}

func TestExplainStages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		title  string
		policy ProximityPolicy
		want   Decision
	}{
		{
			name:  "subject of action verb",
			title: "Cate Blanchett hosts a gala",
			want:  Decision{Involved: true, Stage: StageRole, Detail: "hosts"},
		},
		{
			name:  "reporting verb falls through",
			title: "Cate Blanchett said the festival was wonderful",
			want:  Decision{Stage: StageNoSignal},
		},
		{
			name:   "reporting verb with event noun under widened policy",
			title:  "Cate Blanchett said the festival was wonderful",
			policy: EventNounSuffices,
			want:   Decision{Involved: true, Stage: StageProximity, Detail: "festival"},
		},
		{
			name:  "interviewed by the tracked person",
			title: "Director interviewed by Cate Blanchett",
			want:  Decision{Involved: true, Stage: StageRole, Detail: "interviewed"},
		},
		{
			name:  "interviewed by someone else",
			title: "Cate Blanchett was interviewed by Tilda Swinton",
			want:  Decision{Stage: StageNoSignal},
		},
		{
			name:  "phrase fallback",
			title: "Featuring Cate Blanchett",
			want:  Decision{Involved: true, Stage: StagePhrase, Detail: "featuring cate blanchett"},
		},
		{
			name:  "token pair fallback ignores case",
			title: "CATE BLANCHETT hosts gala",
			want:  Decision{Involved: true, Stage: StageRole, Detail: "hosts"},
		},
		{
			name:  "surname-only person entity",
			title: "Blanchett presents her new film",
			want:  Decision{Involved: true, Stage: StageRole, Detail: "presents"},
		},
		{
			name:  "surname without entity is not the name",
			title: "Blanchett presents",
			want:  Decision{Stage: StageNameNotFound},
		},
		{
			name:  "full-name entity preferred",
			title: "Blanchett fans gather as Cate Blanchett appears",
			want:  Decision{Involved: true, Stage: StageRole, Detail: "appears"},
		},
		{
			name:  "name heading a longer noun phrase",
			title: "Gala dinner Cate Blanchett will join guests",
			want:  Decision{Involved: true, Stage: StageRole, Detail: "join"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			title, description := tt.title, ""
			if tt.title == "Featuring Cate Blanchett" {
				description = "A new film screening"
			}
			got := newFake(tt.policy).Explain(title, description)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProximityNeedsActionVerbByDefault(t *testing.T) {
	t.Parallel()

	docs := map[string]string{
		"Screentalk Cate Blanchett":             "Screentalk/NN Cate/NNP Blanchett/NNP",
		"Cate Blanchett took part in the panel": "Cate/NNP Blanchett/NNP took/VBD part/NN in/IN the/DT panel/NN",
	}
	strict := New(fakeAnalyzer{docs: docs}, Options{FirstName: "Cate", Surname: "Blanchett"})
	loose := New(fakeAnalyzer{docs: docs}, Options{FirstName: "Cate", Surname: "Blanchett", Policy: EventNounSuffices})

	assert.False(t, strict.Classify("Screentalk Cate Blanchett", ""))
	assert.True(t, loose.Classify("Screentalk Cate Blanchett", ""))
	assert.Equal(t, StageProximity, loose.Explain("Screentalk Cate Blanchett", "").Stage)
	assert.True(t, loose.Classify("Cate Blanchett took part in the panel", ""))
	assert.False(t, strict.Classify("Cate Blanchett took part in the panel", ""))
}

func TestCustomTrackedName(t *testing.T) {
	t.Parallel()

	c := New(fakeAnalyzer{docs: fixtures}, Options{FirstName: "Tilda", Surname: "Swinton"})
	got := c.Explain("Cate Blanchett was interviewed by Tilda Swinton", "")
	assert.Equal(t, Decision{Involved: true, Stage: StageRole, Detail: "interviewed"}, got)
	assert.False(t, c.Classify("Cate Blanchett hosts a gala", ""))
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	p, err := ParsePolicy("event_noun")
	require.NoError(t, err)
	assert.Equal(t, EventNounSuffices, p)
	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, RequireAction, p)
	_, err = ParsePolicy("maybe")
	assert.Error(t, err)
}

func TestStageString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "phrase", StagePhrase.String())
	assert.Equal(t, "name-not-found", StageNameNotFound.String())
}

func newProse(t *testing.T) *Classifier {
	t.Helper()
	analyzer, err := nlp.NewProseAnalyzer(nil)
	require.NoError(t, err)
	return New(analyzer, Options{FirstName: "Cate", Surname: "Blanchett"})
}

func TestHostedByScreentalk(t *testing.T) {
	t.Parallel()

	assert.True(t, newProse(t).Classify("Acting Screentalk hosted by Cate Blanchett", ""))
}

func TestNoMentionOfName(t *testing.T) {
	t.Parallel()

	got := newProse(t).Explain("Gallery closes early", "No mention of the tracked name here.")
	assert.False(t, got.Involved)
	assert.Equal(t, StageNameNotFound, got.Stage)
}

func TestClassifyDeterministicUnderConcurrency(t *testing.T) {
	t.Parallel()

	c := newProse(t)
	inputs := [][2]string{
		{"Acting Screentalk hosted by Cate Blanchett", ""},
		{"Gallery closes early", "No mention of the tracked name here."},
		{"In conversation with Cate Blanchett", "An evening at the Southbank Centre."},
		{"Cate Blanchett said the festival was wonderful", ""},
		{"Summer party", "Cate Blanchett will attend the gala premiere."},
	}
	want := make([]bool, len(inputs))
	for i, in := range inputs {
		want[i] = c.Classify(in[0], in[1])
	}

	var wg sync.WaitGroup
	for round := 0; round < 4; round++ {
		for i := len(inputs) - 1; i >= 0; i-- {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.Equal(t, want[i], c.Classify(inputs[i][0], inputs[i][1]))
			}(i)
		}
	}
	wg.Wait()
	assert.True(t, want[0])
	assert.False(t, want[1])
	assert.True(t, want[2])
}
