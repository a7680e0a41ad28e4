package content

const postProjection = `
	_id,
	_createdAt,
	title,
	description,
	slug { current },
	author -> { name, image },
	mainImage`

// sqlImage builds the {asset: {_ref}} shape from a nullable column.
func sqlImage(column string) string {
	return `CASE WHEN ` + column + ` IS NULL THEN NULL ELSE json_build_object('asset', json_build_object('_ref', ` + column + `)) END`
}

var sqlPostFields = `
	'_id', post.id,
	'_createdAt', post.created_at,
	'title', post.title,
	'description', post.description,
	'slug', json_build_object('current', post.slug),
	'author', CASE WHEN author.id IS NULL THEN NULL ELSE json_build_object(
		'name', author.name,
		'image', ` + sqlImage("author.image_ref") + `
	) END,
	'mainImage', ` + sqlImage("post.main_image_ref")

var QueryPostListing = Query{
	Name: "post listing",
	GROQ: `*[_type == "post" && defined(slug.current)] | order(_createdAt desc) {` + postProjection + `
}`,
	SQL: `
---- Post listing
SELECT coalesce(json_agg(p.doc ORDER BY p.created_at DESC), '[]'::json)
FROM (
	SELECT post.created_at, json_build_object(` + sqlPostFields + `) AS doc
	FROM post
	LEFT JOIN author ON author.id = post.author_id
) AS p
`,
}

var QueryPostBySlug = Query{
	Name: "post by slug",
	GROQ: `*[_type == "post" && slug.current == $slug][0] {` + postProjection + `,
	body,
	"comments": *[_type == "comment" && post._ref == ^._id && approved == true] | order(_createdAt asc) {
		_id,
		_createdAt,
		name,
		comment
	}
}`,
	SQL: `
---- Post by slug
SELECT json_build_object(` + sqlPostFields + `,
	'body', post.body,
	'comments', coalesce((
		SELECT json_agg(json_build_object(
			'_id', c.id,
			'_createdAt', c.created_at,
			'name', c.name,
			'comment', c.comment
		) ORDER BY c.created_at ASC)
		FROM comment AS c
		WHERE c.post_id = post.id AND c.approved
	), '[]'::json)
)
FROM post
LEFT JOIN author ON author.id = post.author_id
WHERE post.slug = @slug
`,
}

var QueryPostSlugs = Query{
	Name: "post slugs",
	GROQ: `*[_type == "post" && defined(slug.current)] {
	_id,
	slug { current }
}`,
	SQL: `
---- Post slugs
SELECT coalesce(json_agg(json_build_object(
	'_id', post.id,
	'slug', json_build_object('current', post.slug)
) ORDER BY post.created_at DESC), '[]'::json)
FROM post
`,
}
