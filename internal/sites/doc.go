// Package sites adapts third-party character listing APIs to the canonical
// model. Each adapter satisfies Scraper, owns one HTTP transport for its
// lifetime, and applies its own admission policy: listing items without an
// image, creator identity or page identifier are dropped and logged, never
// returned. The Registry routes a URL to the adapter for its host.
package sites
