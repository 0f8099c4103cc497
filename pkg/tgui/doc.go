// Package tgui holds the small Telegram UI helpers the bot renders with:
// HTML escaping, a line-oriented message builder, inline keyboards and
// callback data that stays inside Telegram's 64 byte limit.
package tgui
