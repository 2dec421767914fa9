package scrape

import "testing"

const sampleTable = `
<html><body>
<h1>Graduation Rates</h1>
<table>
  <thead><tr><th>School</th><th>Rate</th></tr></thead>
  <tbody>
    <tr><td>42</td><td> 87.5% </td></tr>
    <tr><td>43</td><td>#DIV/0!</td></tr>
    <tr><td></td><td>99</td></tr>
    <tr><td>44</td><td>91.2%</td></tr>
  </tbody>
</table>
</body></html>`

func TestExtractObservations_Defaults(t *testing.T) {
	obs, err := ExtractObservations(sampleTable, TableMapping{})
	if err != nil {
		t.Fatalf("ExtractObservations: %v", err)
	}

	want := []Observation{
		{Key: "42", Value: "87.5%"},
		{Key: "43", Value: "#DIV/0!"},
		{Key: "44", Value: "91.2%"},
	}
	if len(obs) != len(want) {
		t.Fatalf("got %d observations, want %d: %+v", len(obs), len(want), obs)
	}
	for i := range want {
		if obs[i] != want[i] {
			t.Fatalf("obs[%d] = %+v, want %+v", i, obs[i], want[i])
		}
	}
}

func TestExtractObservations_ValuesStayRaw(t *testing.T) {
	obs, err := ExtractObservations(sampleTable, TableMapping{})
	if err != nil {
		t.Fatalf("ExtractObservations: %v", err)
	}
	if obs[0].Value != "87.5%" {
		t.Fatalf("value must keep its percent sign for the normalizer, got %q", obs[0].Value)
	}
}

func TestExtractObservations_MatchFilter(t *testing.T) {
	obs, err := ExtractObservations(sampleTable, TableMapping{
		Match: `^([\d.]+)%$`,
	})
	if err != nil {
		t.Fatalf("ExtractObservations: %v", err)
	}
	// Only the two percent-suffixed rows survive, with the suffix captured away.
	if len(obs) != 2 || obs[0].Value != "87.5" || obs[1].Value != "91.2" {
		t.Fatalf("obs = %+v", obs)
	}
}

func TestExtractObservations_CustomSelectors(t *testing.T) {
	html := `<ul>
	  <li><span class="k">d1</span><span class="v">12%</span></li>
	  <li><span class="k">d2</span><span class="v">15%</span></li>
	</ul>`

	obs, err := ExtractObservations(html, TableMapping{
		RowSelector:   "ul li",
		KeySelector:   "span.k",
		ValueSelector: "span.v",
	})
	if err != nil {
		t.Fatalf("ExtractObservations: %v", err)
	}
	if len(obs) != 2 || obs[1].Key != "d2" || obs[1].Value != "15%" {
		t.Fatalf("obs = %+v", obs)
	}
}

func TestExtractObservations_BadRegex(t *testing.T) {
	if _, err := ExtractObservations(sampleTable, TableMapping{Match: "("}); err == nil {
		t.Fatalf("expected error for invalid regex")
	}
}

func TestExtractObservations_NoRows(t *testing.T) {
	obs, err := ExtractObservations("<p>nothing here</p>", TableMapping{})
	if err != nil {
		t.Fatalf("ExtractObservations: %v", err)
	}
	if len(obs) != 0 {
		t.Fatalf("expected no observations, got %+v", obs)
	}
}
