package scanapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DetectContradictions flags internally inconsistent scan results, where
// the backend's status fields disagree with the ids it returned.
func DetectContradictions(result *ScanResult) string {
	var issues []string
	if result.MatchStatus == "" && result.VintageID != "" {
		issues = append(issues, "vintage_id present despite match_status=None")
	}
	if result.UploadStatus != "Completed" && result.VintageID != "" {
		issues = append(issues, "vintage_id present despite incomplete upload")
	}
	if result.MatchStatus == "Matched" && result.VintageID == "" {
		issues = append(issues, "match_status=Matched but vintage_id is null")
	}
	return strings.Join(issues, "; ")
}

type labelDetail struct {
	ID            flexString      `json:"id"`
	UserVintageID flexString      `json:"user_vintage_id"`
	MatchStatus   string          `json:"match_status"`
	VintageID     flexString      `json:"vintage_id"`
	Image         json.RawMessage `json:"image"`
}

type userVintageDetail struct {
	LabelID flexString      `json:"label_id"`
	Image   json.RawMessage `json:"image"`
}

// VerifyIntegrity cross-references a completed scan's label record with
// its user vintage and reports any referential mismatches. A failed check
// is reported as an issue rather than an error so a flaky secondary
// endpoint does not fail the scan.
func (c *Client) VerifyIntegrity(ctx context.Context, labelID, userVintageID string) string {
	var label labelDetail
	if err := c.getJSON(ctx, labelDetailPath+url.PathEscape(labelID), &label); err != nil {
		return fmt.Sprintf("Integrity check failed: %v", err)
	}
	var userVintage userVintageDetail
	if err := c.getJSON(ctx, userVintagePath+url.PathEscape(userVintageID), &userVintage); err != nil {
		return fmt.Sprintf("Integrity check failed: %v", err)
	}

	var issues []string
	if string(label.ID) != labelID {
		issues = append(issues, "Label ID mismatch")
	}
	if string(label.UserVintageID) != userVintageID {
		issues = append(issues, "label.user_vintage_id != userVintage.id")
	}
	if string(userVintage.LabelID) != labelID {
		issues = append(issues, "userVintage.label_id != label.id")
	}
	if label.MatchStatus == "Matched" && label.VintageID == "" {
		issues = append(issues, "match_status=Matched but vintage_id is null")
	}
	if !hasJSONValue(label.Image) && !hasJSONValue(userVintage.Image) {
		issues = append(issues, "No image in either label or user_vintage")
	}
	return strings.Join(issues, "; ")
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func hasJSONValue(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null" && trimmed != "{}" && trimmed != `""`
}
