// Package kasa tracks a small personal portfolio of gram gold, gram silver,
// gram copper, US dollars and euros, all valued in Turkish lira.
//
// The core functionalities include:
//   - Price routing: a Router asks several independent quote sources per
//     asset class, in primary then fallback order, tolerates partial
//     failures and derives the copper price from the dollar rate fetched in
//     the same round. Operator supplied prices fill the remaining gaps.
//   - Inventory: Replay folds an append-only ledger of purchases and sales
//     into positions using the weighted average cost method, refusing any
//     sale larger than the position.
//   - Valuation: Valuate combines positions with current quotes into market
//     value, realized and unrealized profit and loss.
//   - Persistence of the ledger as a human readable JSONL file.
//
// Quote sources live in their own packages (frankfurter, exrhost, tcmb,
// kapalicarsi, metalsdev, stooq). Price history and the periodic fetch
// service are in the store and service packages.
package kasa
