/*
Package understanding turns a loaded page into a PageUnderstanding.

The pipeline makes three completion calls:

 1. Zones: the page summary goes in, labeled regions with DOM anchors come out.
 2. Selectors: for every zone whose anchors match, a sanitized markup sample
    goes in and an item selector with field selectors comes out.
 3. Strategies: zones and selector quality go in, a method per zone, the
    primary zone and the zones to skip come out.

Every response is repaired by llmjson and checked against an embedded JSON
schema. A failed zone phase yields a whole-page prose strategy. A failed
strategy phase falls back to HeuristicStrategy. Understand never returns an
error.
*/
package understanding
