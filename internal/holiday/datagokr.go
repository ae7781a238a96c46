package holiday

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pastelcal/internal/model"
)

// DefaultDataGoKrURL is the public holiday endpoint of the Korean public
// data portal (special day information service).
const DefaultDataGoKrURL = "https://apis.data.go.kr/B090041/openapi/service/SpcdeInfoService/getRestDeInfo"

// DataGoKr reads public holidays from the data.go.kr special day API.
type DataGoKr struct {
	Key     string
	BaseURL string
	Client  *http.Client
}

type restDeResponse struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			// Items is "" when the year has no entries.
			Items json.RawMessage `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

type restDeItem struct {
	LocDate   json.Number `json:"locdate"`
	DateName  string      `json:"dateName"`
	IsHoliday string      `json:"isHoliday"`
}

func (d DataGoKr) Name() string { return "data.go.kr" }

func (d DataGoKr) Year(ctx context.Context, year int) ([]model.Holiday, error) {
	if d.Key == "" {
		return nil, errors.New("holiday: data.go.kr service key is empty")
	}
	base := d.BaseURL
	if base == "" {
		base = DefaultDataGoKrURL
	}
	q := url.Values{}
	q.Set("solYear", strconv.Itoa(year))
	q.Set("numOfRows", "100")
	q.Set("_type", "json")
	q.Set("serviceKey", d.Key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holiday: data.go.kr: %s", resp.Status)
	}
	return parseRestDe(body)
}

func parseRestDe(body []byte) ([]model.Holiday, error) {
	var r restDeResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("holiday: data.go.kr decode: %w", err)
	}
	if code := r.Response.Header.ResultCode; code != "00" {
		return nil, fmt.Errorf("holiday: data.go.kr result %s: %s", code, r.Response.Header.ResultMsg)
	}

	raw := bytes.TrimSpace(r.Response.Body.Items)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, nil
	}
	var wrapper struct {
		Item json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, err
	}
	item := bytes.TrimSpace(wrapper.Item)
	if len(item) == 0 {
		return nil, nil
	}

	// A single entry comes back as an object, several as an array.
	var items []restDeItem
	if item[0] == '[' {
		if err := json.Unmarshal(item, &items); err != nil {
			return nil, err
		}
	} else {
		var one restDeItem
		if err := json.Unmarshal(item, &one); err != nil {
			return nil, err
		}
		items = []restDeItem{one}
	}

	out := make([]model.Holiday, 0, len(items))
	for _, it := range items {
		ds := it.LocDate.String()
		if len(ds) != 8 {
			continue
		}
		out = append(out, model.Holiday{
			Date:      ds[0:4] + "-" + ds[4:6] + "-" + ds[6:8],
			Name:      it.DateName,
			IsHoliday: it.IsHoliday == "Y",
		})
	}
	return out, nil
}
