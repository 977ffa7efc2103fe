package ingestion

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// ldJSONScriptPattern finds structured-data blocks without parsing the page.
var ldJSONScriptPattern = regexp.MustCompile(`(?is)<script[^>]*type=["']application/ld\+json["'][^>]*>(.*?)</script>`)

// JSONLDEvent is the subset of a schema.org Event the scraper maps. Fields
// whose shape varies between publishers are kept raw.
type JSONLDEvent struct {
	Name                string          `json:"name"`
	StartDate           string          `json:"startDate"`
	EndDate             string          `json:"endDate"`
	Description         string          `json:"description"`
	URL                 string          `json:"url"`
	EventAttendanceMode string          `json:"eventAttendanceMode"`
	EventStatus         string          `json:"eventStatus"`
	Location            json.RawMessage `json:"location"`
	Offers              json.RawMessage `json:"offers"`
	Organizer           json.RawMessage `json:"organizer"`
	Image               json.RawMessage `json:"image"`
}

// ExtractJSONLDEvents returns every Event object embedded in html. A block
// may hold one object, an array, or an @graph wrapper; malformed blocks and
// non-Event items are ignored.
func ExtractJSONLDEvents(html string) []JSONLDEvent {
	var events []JSONLDEvent

	for _, m := range ldJSONScriptPattern.FindAllStringSubmatch(html, -1) {
		for _, raw := range jsonLDCandidates([]byte(strings.TrimSpace(m[1]))) {
			var probe struct {
				Type json.RawMessage `json:"@type"`
			}
			if err := json.Unmarshal(raw, &probe); err != nil || !isEventType(probe.Type) {
				continue
			}

			var event JSONLDEvent
			if err := json.Unmarshal(raw, &event); err != nil {
				continue
			}
			events = append(events, event)
		}
	}

	return events
}

func jsonLDCandidates(block []byte) []json.RawMessage {
	if !json.Valid(block) {
		return nil
	}

	switch firstByte(block) {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(block, &items); err != nil {
			return nil
		}
		return items
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(block, &obj); err != nil {
			return nil
		}
		if graph, ok := obj["@graph"]; ok && firstByte(graph) == '[' {
			var items []json.RawMessage
			if err := json.Unmarshal(graph, &items); err == nil {
				return items
			}
		}
		return []json.RawMessage{block}
	default:
		return nil
	}
}

// isEventType accepts "@type": "Event" or an array containing "Event".
func isEventType(raw json.RawMessage) bool {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single == "Event"
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		for _, t := range many {
			if t == "Event" {
				return true
			}
		}
	}
	return false
}

func firstByte(b []byte) byte {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

// firstObject unwraps a value that may be an object or an array of objects.
func firstObject(raw json.RawMessage) json.RawMessage {
	if firstByte(raw) != '[' {
		return raw
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return nil
	}
	return items[0]
}

// scalarString renders a JSON string or number; other shapes yield "".
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

type ldAddress struct {
	StreetAddress   string `json:"streetAddress"`
	AddressLocality string `json:"addressLocality"`
	AddressRegion   string `json:"addressRegion"`
}

type ldPlace struct {
	Name    string          `json:"name"`
	Address json.RawMessage `json:"address"`
}

// locationParts returns venue name, street, locality and region, in order.
func (e JSONLDEvent) locationParts() []string {
	raw := firstObject(e.Location)
	if len(raw) == 0 {
		return nil
	}
	if s := scalarString(raw); s != "" {
		return []string{s}
	}

	var place ldPlace
	if err := json.Unmarshal(raw, &place); err != nil {
		return nil
	}

	parts := []string{place.Name}
	if s := scalarString(place.Address); s != "" {
		parts = append(parts, s)
	} else if len(place.Address) > 0 {
		var addr ldAddress
		if err := json.Unmarshal(firstObject(place.Address), &addr); err == nil {
			parts = append(parts, addr.StreetAddress, addr.AddressLocality, addr.AddressRegion)
		}
	}
	return parts
}

// price returns the first offer's price as text, or "".
func (e JSONLDEvent) price() string {
	raw := firstObject(e.Offers)
	if len(raw) == 0 {
		return ""
	}
	var offer struct {
		Price json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(raw, &offer); err != nil {
		return ""
	}
	return strings.TrimSpace(scalarString(offer.Price))
}

func (e JSONLDEvent) organizer() (name, url string) {
	raw := firstObject(e.Organizer)
	if len(raw) == 0 {
		return "", ""
	}
	var org struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(raw, &org); err != nil {
		return "", ""
	}
	return org.Name, org.URL
}

// imageURL accepts a URL string, an ImageObject, or an array of either.
func (e JSONLDEvent) imageURL() string {
	raw := firstObject(e.Image)
	if len(raw) == 0 {
		return ""
	}
	if s := scalarString(raw); s != "" {
		return s
	}
	var img struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &img); err != nil {
		return ""
	}
	return img.URL
}
