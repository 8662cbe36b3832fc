// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"reflect"
	"strings"
	"testing"

	"github.com/pdiddy/medref/internal/browse"
	"github.com/pdiddy/medref/pkg/types"
)

// --- PubMed ---

const esearchJSON = `{"header":{"type":"esearch"},"esearchresult":{"count":"3","retmax":"3","idlist":["38012345","37999999","36000001"]}}`

const esummaryJSON = `{"header":{"type":"esummary"},"result":{
  "uids":["38012345","37999999","36000001"],
  "38012345":{"uid":"38012345","title":"Empiric therapy for community-acquired pneumonia.","pubdate":"2023 Nov 20",
    "source":"N Engl J Med","authors":[{"name":"Smith J"},{"name":"Lee K"},{"name":"Patel R"},{"name":"Chen W"}]},
  "37999999":{"uid":"37999999","pubdate":"Winter 2022","source":"Chest","authors":[]},
  "36000001":{"uid":"36000001","title":"Procalcitonin-guided antibiotics.","pubdate":"2021","source":"JAMA","authors":[{"name":"Garcia M"}]}
}}`

func TestPubMedIDs(t *testing.T) {
	got := pubmedIDs([]byte(esearchJSON))
	want := []string{"38012345", "37999999", "36000001"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("pubmedIDs() = %v, want %v", got, want)
	}
	if ids := pubmedIDs([]byte(`{"esearchresult":{"idlist":[]}}`)); len(ids) != 0 {
		t.Errorf("empty idlist gave %v", ids)
	}
}

func TestNormalizePubMedFields(t *testing.T) {
	ids := pubmedIDs([]byte(esearchJSON))
	content, cits := normalizePubMed(ids, []byte(esummaryJSON))

	if len(cits) != 3 {
		t.Fatalf("len(citations) = %d, want 3", len(cits))
	}

	c := cits[0]
	if c.ID != "pubmed-38012345" {
		t.Errorf("ID = %q", c.ID)
	}
	if c.Identifier != "38012345" {
		t.Errorf("Identifier = %q", c.Identifier)
	}
	if c.URL != "https://pubmed.ncbi.nlm.nih.gov/38012345/" {
		t.Errorf("URL = %q", c.URL)
	}
	if c.Source != "N Engl J Med" {
		t.Errorf("Source = %q", c.Source)
	}
	if !reflect.DeepEqual(c.Authors, []string{"Smith J", "Lee K", "Patel R"}) {
		t.Errorf("Authors = %v, want first three", c.Authors)
	}
	if c.Year == nil || *c.Year != 2023 {
		t.Errorf("Year = %v, want 2023", c.Year)
	}

	// Missing title and non-numeric pubdate fall back.
	if cits[1].Title != "Untitled" {
		t.Errorf("Title = %q, want Untitled", cits[1].Title)
	}
	if cits[1].Year != nil {
		t.Errorf("Year = %d, want nil for %q", *cits[1].Year, "Winter 2022")
	}
	if cits[2].Year == nil || *cits[2].Year != 2021 {
		t.Errorf("Year = %v, want 2021", cits[2].Year)
	}

	blocks := strings.Split(content, Divider)
	if len(blocks) != 3 {
		t.Fatalf("content has %d blocks, want 3:\n%s", len(blocks), content)
	}
	wantFirst := "**Empiric therapy for community-acquired pneumonia.**\nSmith J, Lee K, Patel R et al. - N Engl J Med (2023 Nov 20)"
	if blocks[0] != wantFirst {
		t.Errorf("block[0] = %q, want %q", blocks[0], wantFirst)
	}
	if blocks[1] != "**Untitled**\n - Chest (Winter 2022)" {
		t.Errorf("block[1] = %q", blocks[1])
	}
}

func TestNormalizePubMedIdempotent(t *testing.T) {
	ids := pubmedIDs([]byte(esearchJSON))
	c1, cits1 := normalizePubMed(ids, []byte(esummaryJSON))
	c2, cits2 := normalizePubMed(ids, []byte(esummaryJSON))
	if c1 != c2 {
		t.Error("content differs between identical calls")
	}
	if !reflect.DeepEqual(cits1, cits2) {
		t.Error("citations differ between identical calls")
	}
}

func TestNormalizePubMedSkipsMissingRecords(t *testing.T) {
	content, cits := normalizePubMed([]string{"1", "2"}, []byte(`{"result":{"uids":["2"],"2":{"title":"Only"}}}`))
	if len(cits) != 1 || cits[0].ID != "pubmed-2" {
		t.Fatalf("citations = %+v", cits)
	}
	if !strings.HasPrefix(content, "**Only**") {
		t.Errorf("content = %q", content)
	}
}

func TestNormalizePubMedEmpty(t *testing.T) {
	content, cits := normalizePubMed(nil, nil)
	if content != NoResults {
		t.Errorf("content = %q, want %q", content, NoResults)
	}
	if cits == nil || len(cits) != 0 {
		t.Errorf("citations = %#v, want empty non-nil slice", cits)
	}
}

// --- Exa ---

func TestNormalizeExa(t *testing.T) {
	body := `{"results":[
	  {"title":"Sepsis guidelines","url":"https://www.nejm.org/doi/full/10.1056/x","text":"Full text of the guideline.","highlights":["Early antibiotics matter."]},
	  {"url":"https://cochrane.org/review","text":"` + strings.Repeat("a", 400) + `"},
	  {"title":"No url","highlights":["Only a highlight."]}
	]}`
	content, cits := normalizeExa([]byte(body))

	if len(cits) != 3 {
		t.Fatalf("len(citations) = %d, want 3", len(cits))
	}
	if cits[0].ID != "exa-0" || cits[2].ID != "exa-2" {
		t.Errorf("IDs = %q, %q", cits[0].ID, cits[2].ID)
	}
	if cits[0].Source != "www.nejm.org" {
		t.Errorf("Source = %q, want URL host", cits[0].Source)
	}
	if cits[0].Snippet != "Early antibiotics matter." {
		t.Errorf("Snippet = %q, want first highlight", cits[0].Snippet)
	}
	if cits[1].Title != "Untitled" {
		t.Errorf("Title = %q, want Untitled", cits[1].Title)
	}
	if len(cits[1].Snippet) != 300 {
		t.Errorf("len(Snippet) = %d, want 300 from text", len(cits[1].Snippet))
	}
	if cits[2].Source != "Exa" {
		t.Errorf("Source = %q, want Exa fallback", cits[2].Source)
	}

	blocks := strings.Split(content, Divider)
	if len(blocks) != 3 {
		t.Fatalf("content has %d blocks", len(blocks))
	}
	if blocks[0] != "## Sepsis guidelines\nFull text of the guideline." {
		t.Errorf("block[0] = %q", blocks[0])
	}
	if blocks[2] != "## No url\nOnly a highlight." {
		t.Errorf("block[2] = %q, want highlight when text is absent", blocks[2])
	}
}

func TestNormalizeExaNoResults(t *testing.T) {
	content, cits := normalizeExa([]byte(`{"results":[]}`))
	if content != "" || len(cits) != 0 || cits == nil {
		t.Errorf("got %q, %#v", content, cits)
	}
}

// --- Tavily ---

func TestNormalizeTavilyAnswer(t *testing.T) {
	body := `{"answer":"Use CURB-65 to decide site of care.","results":[
	  {"title":"CAP in adults","url":"https://www.mayoclinic.org/cap","content":"Community-acquired pneumonia."},
	  {"url":"","content":"x"}
	]}`
	content, cits := normalizeTavily([]byte(body))
	if content != "Use CURB-65 to decide site of care." {
		t.Errorf("content = %q, want the answer verbatim", content)
	}
	if len(cits) != 2 {
		t.Fatalf("len(citations) = %d", len(cits))
	}
	if cits[0].ID != "tavily-0" || cits[0].Source != "www.mayoclinic.org" || cits[0].Snippet != "Community-acquired pneumonia." {
		t.Errorf("citation[0] = %+v", cits[0])
	}
	if cits[1].Title != "Untitled" || cits[1].Source != "Tavily" {
		t.Errorf("citation[1] = %+v", cits[1])
	}
}

func TestNormalizeTavilyWithoutAnswer(t *testing.T) {
	body := `{"results":[{"title":"A","content":"one"},{"title":"B","content":"two"}]}`
	content, _ := normalizeTavily([]byte(body))
	want := "## A\none" + Divider + "## B\ntwo"
	if content != want {
		t.Errorf("content = %q, want %q", content, want)
	}
}

// --- Perplexity ---

func TestNormalizePerplexityMixedCitations(t *testing.T) {
	body := `{
	  "choices":[{"message":{"role":"assistant","content":"Beta-lactam plus macrolide [1][2]."}}],
	  "citations":["https://www.thelancet.com/a", {"url":"https://jamanetwork.com/b"}, {"title":"IDSA guideline","url":"https://idsociety.org/c"}],
	  "search_results":[{"title":"Lancet review","url":"https://www.thelancet.com/a"}]
	}`
	content, cits := normalizePerplexity([]byte(body))

	if content != "Beta-lactam plus macrolide [1][2]." {
		t.Errorf("content = %q", content)
	}
	want := []types.Citation{
		{ID: "pplx-0", Title: "Lancet review", Source: "Perplexity", URL: "https://www.thelancet.com/a"},
		{ID: "pplx-1", Title: "Source 2", Source: "Perplexity", URL: "https://jamanetwork.com/b"},
		{ID: "pplx-2", Title: "IDSA guideline", Source: "Perplexity", URL: "https://idsociety.org/c"},
	}
	if !reflect.DeepEqual(cits, want) {
		t.Errorf("citations =\n%+v\nwant\n%+v", cits, want)
	}
}

func TestNormalizePerplexityBareURLTitle(t *testing.T) {
	_, cits := normalizePerplexity([]byte(`{"choices":[{"message":{"content":"x"}}],"citations":["https://nejm.org/z"]}`))
	if len(cits) != 1 || cits[0].Title != "https://nejm.org/z" {
		t.Errorf("citations = %+v, want URL as title", cits)
	}
}

func TestNormalizePerplexitySearchResultsOnly(t *testing.T) {
	body := `{"choices":[{"message":{"content":"x"}}],"search_results":[{"title":"Cochrane","url":"https://cochrane.org/r","snippet":"Meta-analysis."}]}`
	_, cits := normalizePerplexity([]byte(body))
	if len(cits) != 1 {
		t.Fatalf("len(citations) = %d", len(cits))
	}
	if cits[0].Title != "Cochrane" || cits[0].Snippet != "Meta-analysis." {
		t.Errorf("citation = %+v", cits[0])
	}
}

func TestNormalizePerplexityMissingFields(t *testing.T) {
	content, cits := normalizePerplexity([]byte(`{}`))
	if content != "" || cits == nil || len(cits) != 0 {
		t.Errorf("got %q, %#v", content, cits)
	}
}

// --- Content hits ---

func TestNormalizeContentHits(t *testing.T) {
	hits := []browse.Hit{
		{Title: "Sepsis in adults", URL: "https://www.uptodate.com/contents/sepsis", Snippet: "Definitions."},
		{Title: "Septic shock", Snippet: "Vasopressors."},
	}
	content, cits := normalizeContentHits(types.ProviderUpToDate, hits)

	if content != "**Sepsis in adults**\nDefinitions."+Divider+"**Septic shock**\nVasopressors." {
		t.Errorf("content = %q", content)
	}
	if cits[0].ID != "uptodate-0" || cits[1].ID != "uptodate-1" {
		t.Errorf("IDs = %q, %q", cits[0].ID, cits[1].ID)
	}
	if cits[0].Source != "UpToDate" {
		t.Errorf("Source = %q", cits[0].Source)
	}

	_, mk := normalizeContentHits(types.ProviderMKSAP, hits[:1])
	if mk[0].ID != "mksap-0" || mk[0].Source != "MKSAP 19" {
		t.Errorf("MKSAP citation = %+v", mk[0])
	}
}

func TestCitationIDsUniquePerNormalizer(t *testing.T) {
	ids := pubmedIDs([]byte(esearchJSON))
	_, pm := normalizePubMed(ids, []byte(esummaryJSON))
	_, ex := normalizeExa([]byte(`{"results":[{"title":"a"},{"title":"a"},{"title":"a"}]}`))
	_, tv := normalizeTavily([]byte(`{"results":[{"title":"a"},{"title":"a"}]}`))
	_, px := normalizePerplexity([]byte(`{"citations":["u","u","u"]}`))

	for name, cits := range map[string][]types.Citation{"pubmed": pm, "exa": ex, "tavily": tv, "perplexity": px} {
		seen := map[string]bool{}
		for _, c := range cits {
			if seen[c.ID] {
				t.Errorf("%s: duplicate id %q", name, c.ID)
			}
			seen[c.ID] = true
		}
	}
}
