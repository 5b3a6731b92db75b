package irc

// Numeric replies used by the server (RFC 1459/2812).
const (
	RPL_WELCOME       = 1
	RPL_YOURHOST      = 2
	RPL_CREATED       = 3
	RPL_MYINFO        = 4
	RPL_UMODEIS       = 221
	RPL_ADMINME       = 256
	RPL_ADMINLOC1     = 257
	RPL_ADMINLOC2     = 258
	RPL_ADMINEMAIL    = 259
	RPL_AWAY          = 301
	RPL_UNAWAY        = 305
	RPL_NOWAWAY       = 306
	RPL_CHANNELMODEIS = 324
	RPL_NOTOPIC       = 331
	RPL_TOPIC         = 332
	RPL_NAMREPLY      = 353
	RPL_ENDOFNAMES    = 366
	RPL_MOTDSTART     = 375
	RPL_MOTD          = 372
	RPL_ENDOFMOTD     = 376
	RPL_YOUREOPER     = 381
	RPL_REHASHING     = 382

	ERR_NOSUCHNICK       = 401
	ERR_NOSUCHCHANNEL    = 403
	ERR_UNKNOWNCOMMAND   = 421
	ERR_NONICKNAMEGIVEN  = 431
	ERR_ERRONEUSNICKNAME = 432
	ERR_NICKNAMEINUSE    = 433
	ERR_NOTONCHANNEL     = 442
	ERR_NOTREGISTERED    = 451
	ERR_CHANNELISFULL    = 471
	ERR_INVITEONLYCHAN   = 473
	ERR_BADCHANNELKEY    = 475
	ERR_NEEDMOREPARAMS   = 461
	ERR_ALREADYREGISTRED = 462
	ERR_PASSWDMISMATCH   = 464
	ERR_UNKNOWNMODE      = 472
	ERR_NOPRIVILEGES     = 481
	ERR_CHANOPRIVSNEEDED = 482
	ERR_UMODEUNKNOWNFLAG = 501
	ERR_USERSDONTMATCH   = 502
)
