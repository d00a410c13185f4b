package driver

import (
	"fmt"
	"strconv"
)

var scrollDirections = map[string]bool{"up": true, "down": true, "left": true, "right": true}

// scrollScript builds the JS that performs a scroll on target, a JS
// expression evaluating to an element.
func scrollScript(target string, opts ScrollOptions) (string, error) {
	dir := opts.Direction
	if dir == "" {
		dir = "down"
	}
	if !scrollDirections[dir] {
		return "", fmt.Errorf("unknown scroll direction %q", opts.Direction)
	}

	var body string
	switch opts.ScrollType {
	case "", "once":
		dx, dy := "0", "0"
		switch dir {
		case "up":
			dy = "-el.clientHeight * 0.7"
		case "down":
			dy = "el.clientHeight * 0.7"
		case "left":
			dx = "-el.clientWidth * 0.7"
		case "right":
			dx = "el.clientWidth * 0.7"
		}
		body = fmt.Sprintf("el.scrollBy(%s, %s);", dx, dy)
	case "untilBottom":
		body = "el.scrollTop = el.scrollHeight;"
	case "untilTop":
		body = "el.scrollTop = 0;"
	case "untilLeft":
		body = "el.scrollLeft = 0;"
	case "untilRight":
		body = "el.scrollLeft = el.scrollWidth;"
	default:
		return "", fmt.Errorf("unknown scroll type %q", opts.ScrollType)
	}

	return fmt.Sprintf(`(() => {
  const el = %s;
  if (!el) { return null; }
  %s
  return {top: el.scrollTop, left: el.scrollLeft};
})()`, target, body), nil
}

func elementSelector(id string) string {
	return "[" + elementAttr + "=" + strconv.Quote(id) + "]"
}

func queryExpr(sel string) string {
	return "document.querySelector(" + strconv.Quote(sel) + ")"
}
