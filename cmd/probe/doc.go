// Package main runs one page through the understanding cache and
// extraction engine and prints the result as JSON.
//
// Usage:
//
//	./probe -url https://shop.example.com/search?q=tv
//	./probe -url https://news.example.com -goal news -browser
//	./probe -url https://shop.example.com/p/1 -validate -config pagesense.yaml
package main
