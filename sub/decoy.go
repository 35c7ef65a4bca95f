package sub

import (
	"fmt"

	"github.com/trojan-ui/trojan-ui/util/random"
	"github.com/trojan-ui/trojan-ui/web/service"
)

const maxDecoyLinks = 20

var (
	decoyTLDs    = []string{"com", "net", "org", "xyz", "cc", "io"}
	decoyRegions = []string{"HK", "JP", "SG", "US", "TW", "KR", "DE", "UK"}
)

// decoyLinks fabricates 1 to 20 well-formed links pointing at random hosts.
func decoyLinks() []service.Link {
	n := random.Num(maxDecoyLinks) + 1
	links := make([]service.Link, 0, n)
	for i := 0; i < n; i++ {
		region := random.Choice(decoyRegions)
		links = append(links, service.Link{
			Name:     fmt.Sprintf("%s-%s", region, random.LowerSeqRange(2, 4)),
			Region:   region,
			Domain:   random.LowerSeqRange(5, 9) + "." + random.LowerSeqRange(3, 5) + "." + random.Choice(decoyTLDs),
			Password: random.SeqRange(5, 9),
		})
	}
	return links
}
