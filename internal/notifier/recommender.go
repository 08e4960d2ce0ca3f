package notifier

// StrongestRecommender recommends the open network with the highest signal
// level. Blacklisted SSIDs and hidden networks are never recommended.
type StrongestRecommender struct {
	// MinLevel is the weakest RSSI worth recommending. Zero disables the floor.
	MinLevel int
}

// Recommend implements Recommender.
func (r StrongestRecommender) Recommend(results []ScanResult, blacklist map[string]struct{}) *ScanResult {
	var best *ScanResult
	for i := range results {
		c := results[i]
		if c.SSID == "" || !c.IsOpen() {
			continue
		}
		if _, banned := blacklist[c.SSID]; banned {
			continue
		}
		if r.MinLevel != 0 && c.Level < r.MinLevel {
			continue
		}
		if best == nil || c.Level > best.Level {
			best = &c
		}
	}
	return best
}
