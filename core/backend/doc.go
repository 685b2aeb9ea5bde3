/*
Package backend implements the REST backend of InvestPro Capital

All API routes live under /api. Everything else serves the single page frontend
from the static directory.

Authentication

	POST /api/auth/login       {"email", "password"} -> {"success", "token", "user"}
	POST /api/auth/register    {"username", "email", "phone", "cpf", "password"} -> 201 {"success", "message", "user_id"}
	POST /api/auth/verify      Bearer token -> {"success", "user"}
	POST /api/auth/logout      -> {"success", "message"}

Login and register are rate limited per client IP. Tokens are HS256 JWTs valid
for 24 hours. They carry the admin flag, which is trusted until the token expires.

Profiles

	GET    /api/users          admin, newest first
	POST   /api/users          admin, email is required
	GET    /api/users/stats    admin
	GET    /api/users/{id}     the user or an admin
	PUT    /api/users/{id}     the user or an admin, is_admin only by admins
	DELETE /api/users/{id}     admin

Money fields are JSON numbers. Requests may send them as numeric strings as well.

Diagnostics

	GET /api/health
	GET /api/test-db

Errors

Every error is a JSON object {"error": "<message>"}. Messages never carry
internal detail, that goes to the log with a numbered error code.
*/
package backend
