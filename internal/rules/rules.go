// Package rules holds the static medication interaction table.
package rules

import "strings"

// Interaction describes a known risky pair.
type Interaction struct {
	Reason string
}

// pairKey is order-independent: check(a,b) == check(b,a).
func pairKey(a, b string) string {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

var table = map[string]Interaction{
	pairKey("warfarin", "aspirin"):           {Reason: "combined anticoagulant effect increases bleeding risk"},
	pairKey("warfarin", "ibuprofen"):         {Reason: "NSAIDs potentiate warfarin and raise GI bleeding risk"},
	pairKey("lisinopril", "spironolactone"):  {Reason: "ACE inhibitor with potassium-sparing diuretic may cause hyperkalemia"},
	pairKey("metformin", "contrast dye"):     {Reason: "iodinated contrast with metformin risks lactic acidosis"},
	pairKey("sildenafil", "nitroglycerin"):   {Reason: "PDE5 inhibitors with nitrates can cause severe hypotension"},
	pairKey("simvastatin", "clarithromycin"): {Reason: "macrolide inhibition of CYP3A4 raises statin myopathy risk"},
	pairKey("ssri", "tramadol"):              {Reason: "serotonergic combination increases serotonin syndrome risk"},
}

// Check looks up a medication pair in the static rule table. The lookup
// is case-insensitive and order-independent. Unknown pairs are reported
// as not risky.
func Check(medA, medB string) (risky bool, reason string) {
	if i, ok := table[pairKey(medA, medB)]; ok {
		return true, i.Reason
	}
	return false, "no known interaction in the reference table"
}
