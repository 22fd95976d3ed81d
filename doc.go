// Package journal provides the types and arithmetic of a personal investment
// journal for equities listed on a single stock exchange. It is designed to be
// local-first: the whole state fits in a few key-value entries that the user
// owns.
//
// The core functionalities include:
//   - Positions: a held quantity of one symbol with a weighted average cost
//     basis and its append-only list of buy and sell transactions.
//   - Book: the single state container holding positions, liquid cash, the
//     written strategy (the manifesto) and the history of AI analyses.
//   - Import: reading spreadsheets (CSV or XLSX) of symbol, quantity and cost
//     rows and aggregating them into positions.
//   - Planning: proportional rebalancing of new cash toward a target
//     weighting and dollar-cost-averaging projections.
//
// This package serves as the foundational logic for the `sj` command-line
// tool and its HTTP front end.
package journal
