package engine

import (
	"fmt"
	"time"
)

// Scroll script defaults
const (
	DefaultScrollDistance = 300
	DefaultScrollInterval = time.Second
)

const autoScrollTemplate = `(() => new Promise((resolve) => {
	let totalHeight = 0;
	const distance = %d;
	const timer = setInterval(() => {
		const scrollHeight = document.body.scrollHeight;
		window.scrollBy(0, distance);
		totalHeight += distance;
		if (totalHeight >= scrollHeight) {
			clearInterval(timer);
			resolve(totalHeight);
		}
	}, %d);
}))()`

// AutoScrollScript scrolls by the default step until the scrolled distance
// reaches the page height, then resolves with that distance.
var AutoScrollScript = ScrollScript(DefaultScrollDistance, DefaultScrollInterval)

// ScrollScript builds an auto-scroll expression for the given step and interval.
func ScrollScript(distance int, interval time.Duration) string {
	if distance <= 0 {
		distance = DefaultScrollDistance
	}
	if interval <= 0 {
		interval = DefaultScrollInterval
	}
	return fmt.Sprintf(autoScrollTemplate, distance, interval.Milliseconds())
}
