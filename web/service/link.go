package service

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/trojan-ui/trojan-ui/database/model"
)

type Format string

const (
	FormatRaw   Format = "raw"
	FormatClash Format = "clash"
)

// SubContentType is used for every subscription body, real or decoy.
const SubContentType = "text/plain; charset=utf-8"

const (
	trojanPort      = 443
	selectGroupName = "Node Select"
	proxyGroupName  = "PROXY"
	directProxy     = "DIRECT"
)

// Link is one renderable node entry: everything both output formats need.
type Link struct {
	Name     string
	Region   string
	Domain   string
	Password string
}

// URI renders the trojan share link, e.g.
// trojan://secret@relay.example.org:443#HK|hk-01.
func (l Link) URI() string {
	return fmt.Sprintf("trojan://%s@%s:%d#%s|%s", l.Password, l.Domain, trojanPort, l.Region, l.Name)
}

type clashProxy struct {
	Type     string `yaml:"type"`
	Name     string `yaml:"name"`
	Server   string `yaml:"server"`
	Password string `yaml:"password"`
	Sni      string `yaml:"sni"`
	Port     int    `yaml:"port"`
}

type clashGroup struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Proxies []string `yaml:"proxies"`
}

// LinkRenderer turns a user's assignments into subscription content. The
// clash base template is parsed once, at construction.
type LinkRenderer struct {
	domain   string
	template yaml.MapSlice
}

func NewLinkRenderer(domain string, clashTemplate string) (*LinkRenderer, error) {
	var doc yaml.MapSlice
	if err := yaml.UnmarshalWithOptions([]byte(clashTemplate), &doc, yaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("parse clash template: %w", err)
	}
	return &LinkRenderer{domain: domain, template: doc}, nil
}

// LoadLinkRenderer builds a renderer from the webDomain and clashTemplate
// settings.
func LoadLinkRenderer(settingService *SettingService) (*LinkRenderer, error) {
	domain, err := settingService.GetWebDomain()
	if err != nil {
		return nil, err
	}
	template, err := settingService.GetClashTemplate()
	if err != nil {
		return nil, err
	}
	return NewLinkRenderer(domain, template)
}

// NodeDomain substitutes the panel's public domain for the "localhost" sentinel.
func (r *LinkRenderer) NodeDomain(domain string) string {
	if domain == model.LocalDomain {
		return r.domain
	}
	return domain
}

// Resolve pairs each assignment with its node, keeping assignment order.
// Assignments whose node no longer exists are skipped.
func (r *LinkRenderer) Resolve(assignments []*model.UserNode, nodes []*model.Node) []Link {
	byName := make(map[string]*model.Node, len(nodes))
	for _, node := range nodes {
		byName[node.Name] = node
	}
	links := make([]Link, 0, len(assignments))
	for _, a := range assignments {
		node, ok := byName[a.NodeName]
		if !ok {
			continue
		}
		links = append(links, Link{
			Name:     node.Name,
			Region:   node.Region,
			Domain:   r.NodeDomain(node.Domain),
			Password: a.Password,
		})
	}
	return links
}

func URIs(links []Link) []string {
	uris := make([]string, 0, len(links))
	for _, l := range links {
		uris = append(uris, l.URI())
	}
	return uris
}

// Render serializes links in the requested format. Anything other than
// FormatClash renders the raw base64 link list.
func (r *LinkRenderer) Render(links []Link, format Format) ([]byte, error) {
	if format == FormatClash {
		return r.renderClash(links)
	}
	return renderRaw(links), nil
}

func renderRaw(links []Link) []byte {
	joined := []byte(strings.Join(URIs(links), "\n"))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(joined)))
	base64.StdEncoding.Encode(out, joined)
	return out
}

func (r *LinkRenderer) renderClash(links []Link) ([]byte, error) {
	proxies := make([]clashProxy, 0, len(links))
	names := make([]string, 0, len(links))
	for _, l := range links {
		proxies = append(proxies, clashProxy{
			Type:     "trojan",
			Name:     l.Name,
			Server:   l.Domain,
			Password: l.Password,
			Sni:      l.Domain,
			Port:     trojanPort,
		})
		names = append(names, l.Name)
	}
	groups := []clashGroup{
		{Name: selectGroupName, Type: "select", Proxies: append([]string{directProxy}, names...)},
		{Name: proxyGroupName, Type: "select", Proxies: names},
	}

	doc := make(yaml.MapSlice, 0, len(r.template)+2)
	var hasProxies, hasGroups bool
	for _, item := range r.template {
		switch item.Key {
		case "proxies":
			item.Value = proxies
			hasProxies = true
		case "proxy-groups":
			item.Value = groups
			hasGroups = true
		}
		doc = append(doc, item)
	}
	if !hasProxies {
		doc = append(doc, yaml.MapItem{Key: "proxies", Value: proxies})
	}
	if !hasGroups {
		doc = append(doc, yaml.MapItem{Key: "proxy-groups", Value: groups})
	}
	return yaml.Marshal(doc)
}
