// Package scanner discovers downloadable image candidates on a page.
//
// The scanner periodically sweeps the page for image elements, classifies
// each source by how its bytes can be reached, and emits candidates to a
// downstream consumer (typically the orchestrator).
//
// Source Classes:
//
// Every image source falls into one of four classes:
//   - Remote: http/https URLs whose bytes the downloader can fetch itself
//   - Inline: data: URLs carrying the payload in the source string
//   - Ephemeral: blob: URLs that must be resolved while the page is alive
//   - Ignored: everything else (empty, relative leftovers, unknown schemes)
//
// Format Gate:
//
// Inline and ephemeral sources are gated to JPEG before they are emitted.
// A declared media type containing "jpeg" is always accepted; when no media
// type is declared the payload prefix is sniffed for the FF D8 FF magic
// bytes; any other declared type is rejected. Remote candidates skip the
// gate because their bytes are fetched later by the download pipeline.
//
// Debounce:
//
// Each accepted source string enters a TTL set so that repeated sweeps of
// an unchanged page do not re-emit the same candidate. An entry is freed
// early when evaluation fails, allowing a later sweep to retry.
//
// Usage:
//
//	page, err := scanner.NewHTMLPage(pageURL, client)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s := scanner.New(cfg.Scanner, page, resolver, client, orch, log)
//	err = s.Run(ctx)
package scanner
