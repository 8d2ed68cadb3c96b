// Package chain reads constant-product liquidity pair contracts over JSON-RPC
// and derives spot prices from their reserves.
//
// A pair exposes getReserves() (uint112, uint112, uint32), token0() and
// token1(). Reserves are fixed-point integers; the spot price of one token is
// the other token's reserve divided by its own, with no fee or slippage
// adjustment.
package chain
