package trinity

import (
	"regexp"
	"strings"
)

// codeRegion marks a byte range of text that scrubbing must not touch.
type codeRegion struct {
	start, end int
}

// findCodeRegions finds fenced code blocks (``` / ~~~) and inline code spans
// so the translator never mangles code the model legitimately produced.
func findCodeRegions(text string) []codeRegion {
	var regions []codeRegion

	regions = append(regions, findFencedBlocks(text, "```")...)
	regions = append(regions, findFencedBlocks(text, "~~~")...)

	inlineRe := regexp.MustCompile("`+[^`]+`+")
	for _, match := range inlineRe.FindAllStringIndex(text, -1) {
		insideFenced := false
		for _, r := range regions {
			if match[0] >= r.start && match[1] <= r.end {
				insideFenced = true
				break
			}
		}
		if !insideFenced {
			regions = append(regions, codeRegion{match[0], match[1]})
		}
	}

	return regions
}

// findFencedBlocks scans text for fenced code blocks delimited by fence.
func findFencedBlocks(text, fence string) []codeRegion {
	var regions []codeRegion
	offset := 0
	for offset < len(text) {
		idx := strings.Index(text[offset:], fence)
		if idx < 0 {
			break
		}
		start := offset + idx
		if start > 0 && text[start-1] != '\n' {
			offset = start + len(fence)
			continue
		}
		lineEnd := strings.Index(text[start:], "\n")
		if lineEnd < 0 {
			break
		}
		searchFrom := start + lineEnd + 1
		closeIdx := -1
		pos := searchFrom
		for pos < len(text) {
			ci := strings.Index(text[pos:], fence)
			if ci < 0 {
				break
			}
			cand := pos + ci
			if cand == 0 || text[cand-1] == '\n' {
				closeIdx = cand
				break
			}
			pos = cand + len(fence)
		}
		if closeIdx >= 0 {
			end := closeIdx + len(fence)
			if nlAfter := strings.Index(text[end:], "\n"); nlAfter >= 0 {
				end += nlAfter + 1
			} else {
				end = len(text)
			}
			regions = append(regions, codeRegion{start, end})
			offset = end
		} else {
			regions = append(regions, codeRegion{start, len(text)})
			break
		}
	}
	return regions
}

func isInsideCode(pos int, regions []codeRegion) bool {
	for _, r := range regions {
		if pos >= r.start && pos < r.end {
			return true
		}
	}
	return false
}
