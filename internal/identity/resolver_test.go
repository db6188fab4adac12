package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eletricells/vantdge/internal/model"
)

func testTable() AliasTable {
	return NewAliasTable(
		map[string]string{
			"Olumiant":  "baricitinib",
			"LY3009104": "Baricitinib",
			"Rinvoq":    "upadacitinib",
			"ABT-494":   "upadacitinib",
		},
		map[string]string{
			"1187594-09-7": "baricitinib",
			"1310726-60-3": "upadacitinib",
		},
	)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "drug a", Normalize("  Drug   A \t"))
	assert.Equal(t, "abt-494", Normalize("ABT-494"))
	// Fullwidth characters fold under NFKC.
	assert.Equal(t, "abc", Normalize("ＡＢＣ"))
	assert.Equal(t, "", Normalize("   "))
}

func TestAliasTable_Canonical(t *testing.T) {
	tbl := testTable()

	key, ok := tbl.Canonical("OLUMIANT")
	assert.True(t, ok)
	assert.Equal(t, "baricitinib", key)

	key, ok = tbl.Canonical("Baricitinib ")
	assert.True(t, ok, "canonical names are recognised")
	assert.Equal(t, "baricitinib", key)

	key, ok = tbl.Canonical("Mystery Drug")
	assert.False(t, ok)
	assert.Equal(t, "mystery drug", key)

	assert.Equal(t, 6, tbl.Len())
}

func TestResolver_Key(t *testing.T) {
	r := NewResolver(testTable(), DefaultConfig())

	tests := []struct {
		name     string
		cand     model.CandidateEntity
		want     string
		wantWarn bool
	}{
		{
			name: "plain name lowercased",
			cand: model.CandidateEntity{Name: "  DrugA "},
			want: "druga",
		},
		{
			name: "brand name through alias table",
			cand: model.CandidateEntity{Name: "Rinvoq"},
			want: "upadacitinib",
		},
		{
			name: "alias code when name unknown",
			cand: model.CandidateEntity{Name: "", AliasCode: "ABT-494"},
			want: "upadacitinib",
		},
		{
			name: "identifier outranks unrecognised name",
			cand: model.CandidateEntity{
				Name:       "JAK inhibitor compound 7",
				Attributes: map[string]any{"cas_number": "1187594-09-7"},
			},
			want: "baricitinib",
		},
		{
			name: "identifier agreeing with name",
			cand: model.CandidateEntity{
				Name:       "Olumiant",
				Attributes: map[string]any{"cas_number": "1187594-09-7"},
			},
			want: "baricitinib",
		},
		{
			name: "conflict keeps name and warns",
			cand: model.CandidateEntity{
				Name:       "Rinvoq",
				Attributes: map[string]any{"cas_number": "1187594-09-7"},
			},
			want:     "upadacitinib",
			wantWarn: true,
		},
		{
			name: "unmapped identifier ignored for single key",
			cand: model.CandidateEntity{
				Name:       "DrugB",
				Attributes: map[string]any{"unii": "XYZ123"},
			},
			want: "drugb",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, issues := r.Key(tt.cand)
			assert.Equal(t, tt.want, key)
			if tt.wantWarn {
				require.Len(t, issues, 1)
				assert.Equal(t, model.SeverityWarning, issues[0].Severity)
				assert.Equal(t, "identity_conflict", issues[0].Rule)
			} else {
				assert.Empty(t, issues)
			}
		})
	}
}

func TestResolver_ExternalIDPriority(t *testing.T) {
	r := NewResolver(AliasTable{}, Config{IdentifierFields: []string{"unii", "cas_number"}})
	c := model.CandidateEntity{Attributes: map[string]any{"cas_number": "50-78-2", "unii": " R16CO5Y76E "}}
	assert.Equal(t, "r16co5y76e", r.ExternalID(c))

	c = model.CandidateEntity{Attributes: map[string]any{"unii": nil, "cas_number": "50-78-2"}}
	assert.Equal(t, "50-78-2", r.ExternalID(c))
}

func TestResolver_ResolvePeerIdentifiers(t *testing.T) {
	r := NewResolver(testTable(), DefaultConfig())
	cands := []model.CandidateEntity{
		{Name: "XR-77", Attributes: map[string]any{"cas_number": "999-99-9"}},
		{Name: "Olumiant", Attributes: map[string]any{"cas_number": "999-99-9"}},
		{Name: "zz-code", Attributes: map[string]any{"cas_number": "999-99-9"}},
		{Name: "Other", Attributes: map[string]any{"cas_number": "111-11-1"}},
	}

	out, issues := r.Resolve(cands)
	assert.Empty(t, issues)
	require.Len(t, out, 4)
	assert.Equal(t, "baricitinib", out[0].Key)
	assert.Equal(t, MethodPeerIdentifier, out[0].Method)
	assert.Equal(t, "baricitinib", out[1].Key)
	assert.Equal(t, "baricitinib", out[2].Key)
	assert.Equal(t, "other", out[3].Key)
}

func TestResolver_ResolvePeerConflict(t *testing.T) {
	r := NewResolver(testTable(), DefaultConfig())
	cands := []model.CandidateEntity{
		{Name: "Rinvoq", Attributes: map[string]any{"cas_number": "999-99-9"}},
		{Name: "Olumiant", Attributes: map[string]any{"cas_number": "999-99-9"}},
	}

	out, issues := r.Resolve(cands)
	require.Len(t, issues, 1)
	assert.Equal(t, "upadacitinib", issues[0].Subject)
	assert.Equal(t, "upadacitinib", out[0].Key)
	assert.Equal(t, "baricitinib", out[1].Key)
}

func TestResolver_ResolveOrderIndependent(t *testing.T) {
	r := NewResolver(testTable(), DefaultConfig())
	a := model.CandidateEntity{Name: "code-b", Attributes: map[string]any{"cas_number": "5-5-5"}}
	b := model.CandidateEntity{Name: "code-a", Attributes: map[string]any{"cas_number": "5-5-5"}}

	out1, _ := r.Resolve([]model.CandidateEntity{a, b})
	out2, _ := r.Resolve([]model.CandidateEntity{b, a})
	assert.Equal(t, "code-a", out1[0].Key)
	assert.Equal(t, out1[0].Key, out2[1].Key)
	assert.Equal(t, out1[1].Key, out2[0].Key)
}

func TestResolver_EmptyBatch(t *testing.T) {
	r := NewResolver(AliasTable{}, DefaultConfig())
	out, issues := r.Resolve(nil)
	assert.Empty(t, out)
	assert.Empty(t, issues)
}
