package services

const galleryCap = 8

// mergeGallery interleaves the two sources position by position so neither
// dominates, then drops duplicates and caps the result.
func mergeGallery(a, b []string) []string {
	merged := make([]string, 0, len(a)+len(b))
	for i := 0; i < max(len(a), len(b)); i++ {
		if i < len(a) {
			merged = append(merged, a[i])
		}
		if i < len(b) {
			merged = append(merged, b[i])
		}
	}

	seen := make(map[string]bool, len(merged))
	gallery := make([]string, 0, galleryCap)
	for _, url := range merged {
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		gallery = append(gallery, url)
		if len(gallery) == galleryCap {
			break
		}
	}
	if len(gallery) == 0 {
		return nil
	}
	return gallery
}
